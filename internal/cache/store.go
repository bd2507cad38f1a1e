package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

type entry struct {
	value    []byte
	snapshot Snapshot
}

// Store はRegistryのバージョンと紐付けて読み取り結果をメモ化する。
// エントリはTTL経過または関連タグの無効化で再取得される。
type Store struct {
	registry *Registry
	entries  *expirable.LRU[string, entry]
	group    singleflight.Group
	recorder Recorder
}

// NewStore は容量sizeとTTLを持つStoreを生成する。
func NewStore(registry *Registry, size int, ttl time.Duration, recorder Recorder) *Store {
	if size <= 0 {
		size = 256
	}
	return &Store{
		registry: registry,
		entries:  expirable.NewLRU[string, entry](size, nil, ttl),
		recorder: recorder,
	}
}

// Fetch はkeyに対応する値を返す。
// キャッシュが有効ならそれを返し、無ければfetchで取得して保存する。
// 同一キー・同一バージョンの同時取得は1回にまとめる。fetchのエラーはキャッシュしない。
func (s *Store) Fetch(ctx context.Context, key string, tags []string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if e, ok := s.entries.Get(key); ok && !s.registry.IsStale(e.snapshot) {
		s.recordHit()
		return e.value, nil
	}
	s.recordMiss()

	// 取得前にバージョンを控える。取得中に無効化されれば次回の読み取りで古いと判定される。
	snap := s.registry.Snapshot(tags)

	// 共有の取得は最初の呼び出し元のキャンセルから切り離す。
	// 各呼び出し元は自分のctxで待機のみを打ち切る。上限は上流クライアントのタイムアウトで決まる。
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key+"|"+snap.key(), func() (interface{}, error) {
		value, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		s.entries.Add(key, entry{value: value, snapshot: snap})
		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// Len は保持しているエントリ数を返す。
func (s *Store) Len() int {
	return s.entries.Len()
}

func (s *Store) recordHit() {
	if s.recorder != nil {
		s.recorder.RecordCacheHit()
	}
}

func (s *Store) recordMiss() {
	if s.recorder != nil {
		s.recorder.RecordCacheMiss()
	}
}
