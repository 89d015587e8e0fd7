package cache

import (
	"context"
	"testing"

	"college-voting-backend/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFilter 选举过滤器替身，按集合成员判断存在性
type stubFilter struct {
	ids map[uint]bool
}

func newStubFilter(ids ...uint) *stubFilter {
	f := &stubFilter{ids: make(map[uint]bool)}
	for _, id := range ids {
		f.ids[id] = true
	}
	return f
}

func (f *stubFilter) MightContainElection(ctx context.Context, electionID uint) (bool, error) {
	return f.ids[electionID], nil
}

func (f *stubFilter) AddElection(ctx context.Context, electionID uint) error {
	f.ids[electionID] = true
	return nil
}

func newTestTallyCache(t *testing.T, filter electionFilter) *TallyCache {
	t.Helper()
	require.NoError(t, InitRedis(&config.Config{RedisMock: true}))
	ResetMock()
	c := NewTallyCache(GetLockService(), nil)
	c.bloomFilter = filter
	return c
}

// 启动后新建的选举不在过滤器里，结果查询必须回源而不是直接判不存在
func TestTallyGet_FilterMissStillLoadsFreshElection(t *testing.T) {
	filter := newStubFilter(1)
	c := newTestTallyCache(t, filter)

	loaderCalled := false
	payload, exists, err := c.Get(context.Background(), 2, func() (interface{}, bool, error) {
		loaderCalled = true
		return map[string]uint{"election_id": 2}, true, nil
	})

	require.NoError(t, err)
	assert.True(t, loaderCalled)
	assert.True(t, exists)
	assert.Contains(t, payload, `"election_id":2`)

	// 命中后补灌过滤器并写入缓存
	assert.True(t, filter.ids[2])
	cached, err := GetCachedTally(2)
	require.NoError(t, err)
	assert.Equal(t, payload, cached)
}

// 真正不存在的选举回源一次后缓存空值，后续查询不再触达数据库
func TestTallyGet_FilterMissUnknownElection(t *testing.T) {
	c := newTestTallyCache(t, newStubFilter())

	calls := 0
	loader := func() (interface{}, bool, error) {
		calls++
		return nil, false, nil
	}

	_, exists, err := c.Get(context.Background(), 99, loader)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 1, calls)

	// 空值已缓存，再查直接命中空标记
	cached, err := GetCachedTally(99)
	require.NoError(t, err)
	assert.Equal(t, "", cached)
}

// 过滤器命中时走缓存重建路径，第二次读取不再回源
func TestTallyGet_FilterHitCachesRebuild(t *testing.T) {
	c := newTestTallyCache(t, newStubFilter(1))

	calls := 0
	loader := func() (interface{}, bool, error) {
		calls++
		return map[string]uint{"election_id": 1}, true, nil
	}

	first, exists, err := c.Get(context.Background(), 1, loader)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, calls)

	second, exists, err := c.Get(context.Background(), 1, loader)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}
