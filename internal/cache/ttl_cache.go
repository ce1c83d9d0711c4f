package cache

import (
	"sync"
	"time"
)

// CacheItem 缓存项
type CacheItem[V any] struct {
	Value      V
	ExpireTime time.Time
}

// TTLCache 带过期时间的内存缓存，后台定期清理过期项
type TTLCache[K comparable, V any] struct {
	items map[K]*CacheItem[V]
	mu    sync.RWMutex
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once
}

// NewTTLCache 创建缓存，cleanupInterval 为后台清理周期
func NewTTLCache[K comparable, V any](ttl, cleanupInterval time.Duration) *TTLCache[K, V] {
	cache := &TTLCache[K, V]{
		items: make(map[K]*CacheItem[V]),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}

	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	// 启动清理 goroutine
	go cache.cleanup(cleanupInterval)

	return cache
}

// Get 获取缓存项
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	item, exists := c.items[key]
	if !exists {
		return zero, false
	}

	// 检查是否过期
	if time.Now().After(item.ExpireTime) {
		return zero, false
	}

	return item.Value, true
}

// Set 设置缓存项
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &CacheItem[V]{
		Value:      value,
		ExpireTime: time.Now().Add(c.ttl),
	}
}

// Update 在写锁内修改未过期的缓存项，不刷新过期时间
func (c *TTLCache[K, V]) Update(key K, fn func(V) V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	item, exists := c.items[key]
	if !exists || time.Now().After(item.ExpireTime) {
		return zero, false
	}

	item.Value = fn(item.Value)
	return item.Value, true
}

// Delete 删除缓存项
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Size 返回缓存大小（包含尚未清理的过期项）
func (c *TTLCache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Close 停止后台清理，可重复调用
func (c *TTLCache[K, V]) Close() {
	c.once.Do(func() { close(c.stop) })
}

// cleanup 定期清理过期项
func (c *TTLCache[K, V]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.purgeExpired(time.Now())
		}
	}
}

func (c *TTLCache[K, V]) purgeExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, item := range c.items {
		if now.After(item.ExpireTime) {
			delete(c.items, key)
		}
	}
}
