package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// SSEClient 一个SSE连接
type SSEClient struct {
	ElectionID uint
	Writer     http.ResponseWriter
	Flusher    http.Flusher
	Done       chan bool
}

var (
	// sseClients按选举ID分组存储所有SSE连接
	sseClients      = make(map[uint][]*SSEClient)
	sseClientsMutex sync.Mutex
)

// HandleSSE 处理SSE连接请求，持续推送计票更新
func HandleSSE(c *gin.Context) {
	electionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	// 设置SSE所需的HTTP头
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // 禁用Nginx缓冲

	flusher, okFlush := c.Writer.(http.Flusher)
	if !okFlush {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	client := &SSEClient{
		ElectionID: electionID,
		Writer:     c.Writer,
		Flusher:    flusher,
		Done:       make(chan bool, 1),
	}

	sseClientsMutex.Lock()
	sseClients[electionID] = append(sseClients[electionID], client)
	sseClientsMutex.Unlock()

	log.Printf("已注册SSE客户端，选举ID: %d，客户端IP: %s", electionID, c.ClientIP())

	// 发送连接确认
	sendSSEEvent(client, map[string]string{"status": "connected"})

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	notify := c.Request.Context().Done()

	for {
		select {
		case <-notify:
			removeSSEClient(client)
			log.Printf("SSE客户端已断开连接，选举ID: %d", electionID)
			return
		case <-client.Done:
			removeSSEClient(client)
			return
		case <-heartbeat.C:
			// 心跳注释行，保持连接
			fmt.Fprintf(client.Writer, ": heartbeat\n\n")
			client.Flusher.Flush()
		}
	}
}

// BroadcastSSE 向关注某选举的SSE客户端推送计票
func BroadcastSSE(electionID uint, results interface{}) {
	sseClientsMutex.Lock()
	clients := make([]*SSEClient, len(sseClients[electionID]))
	copy(clients, sseClients[electionID])
	sseClientsMutex.Unlock()

	for _, client := range clients {
		sendSSEEvent(client, results)
	}
}

// sendSSEEvent 序列化并写出一个SSE事件
func sendSSEEvent(client *SSEClient, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("序列化SSE数据失败: %v", err)
		return
	}

	if _, err := fmt.Fprintf(client.Writer, "data: %s\n\n", jsonData); err != nil {
		// 写失败说明连接已断，通知清理
		select {
		case client.Done <- true:
		default:
		}
		return
	}
	client.Flusher.Flush()
}

// removeSSEClient 从注册表移除客户端
func removeSSEClient(target *SSEClient) {
	sseClientsMutex.Lock()
	defer sseClientsMutex.Unlock()

	clients := sseClients[target.ElectionID]
	for i, client := range clients {
		if client == target {
			sseClients[target.ElectionID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(sseClients[target.ElectionID]) == 0 {
		delete(sseClients, target.ElectionID)
	}
}
