package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Hub 管理WebSocket连接的中心，按选举ID分组广播计票更新
type Hub struct {
	// 分组存储的客户端连接，按选举ID组织
	clients map[uint]map[*Client]bool

	// 添加新客户端的注册通道
	register chan *Client

	// 删除客户端的注销通道
	unregister chan *Client

	// 广播特定选举的计票更新
	broadcast chan *BroadcastMessage

	// 锁，用于保护clients字典
	mu sync.RWMutex

	// 最大连接数限制
	maxConnections int

	// 当前连接总数
	totalConnections int
}

// Client 表示一个WebSocket客户端连接
type Client struct {
	hub *Hub

	conn *websocket.Conn

	// 发送消息的通道
	send chan []byte

	// 客户端关注的选举ID
	electionID uint
}

// BroadcastMessage 广播消息结构
type BroadcastMessage struct {
	ElectionID uint        `json:"election_id"`
	Results    interface{} `json:"results"`
}

// 定义WebSocket升级器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 允许所有CORS请求，生产环境应限制
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// NewHub 创建并启动广播中心
func NewHub() *Hub {
	h := &Hub{
		clients:        make(map[uint]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *BroadcastMessage, 64),
		maxConnections: 10000,
	}
	go h.run()
	return h
}

// run 运行Hub处理循环
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.totalConnections >= h.maxConnections {
				h.mu.Unlock()
				log.Printf("连接数达到上限 %d，拒绝新连接", h.maxConnections)
				close(client.send)
				continue
			}
			if h.clients[client.electionID] == nil {
				h.clients[client.electionID] = make(map[*Client]bool)
			}
			h.clients[client.electionID][client] = true
			h.totalConnections++
			h.mu.Unlock()
			log.Printf("WebSocket客户端已注册，选举ID: %d，当前连接数: %d", client.electionID, h.totalConnections)

		case client := <-h.unregister:
			h.mu.Lock()
			if group, ok := h.clients[client.electionID]; ok {
				if _, exists := group[client]; exists {
					delete(group, client)
					close(client.send)
					h.totalConnections--
					if len(group) == 0 {
						delete(h.clients, client.electionID)
					}
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				log.Printf("序列化广播消息失败: %v", err)
				continue
			}

			h.mu.RLock()
			for client := range h.clients[message.ElectionID] {
				select {
				case client.send <- data:
				default:
					// 发送缓冲满，视为慢客户端直接丢弃
					go func(c *Client) { h.unregister <- c }(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastResults 向关注某选举的所有客户端推送最新计票
func (h *Hub) BroadcastResults(electionID uint, results interface{}) {
	select {
	case h.broadcast <- &BroadcastMessage{ElectionID: electionID, Results: results}:
	default:
		log.Printf("广播队列已满，丢弃选举 %d 的计票更新", electionID)
	}
}

// HandleWebSocket 升级连接并注册客户端
func (h *Hub) HandleWebSocket(c *gin.Context) {
	electionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("升级WebSocket连接失败: %v", err)
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, 16),
		electionID: electionID,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump 读取客户端消息，只用于保活和断开检测
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket读取错误: %v", err)
			}
			break
		}
	}
}

// writePump 将send通道中的消息写出，并定期发送ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
