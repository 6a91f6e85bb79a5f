package organize

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Claims 维护一次运行内每个目的目录的“已占用名字”集合。
//
// 约束：
// - Reserve 是单次原子的 check-and-reserve（按目录互斥），并发记录不可能
//   拿到同一个编号名
// - 目录冲突永远在这里被消解，不对外暴露为错误
type Claims struct {
	mu   sync.Mutex
	dirs map[string]map[string]struct{}
}

func NewClaims() *Claims {
	return &Claims{dirs: make(map[string]map[string]struct{})}
}

// Reserve 在 dir 下为 name 分配一个无冲突的名字并立即登记。
//
// existing 在该目录第一次被触达时调用一次，用于播种磁盘上已有的名字；
// 之后的冲突判定完全走内存集合。无冲突时返回 name 本身，否则在扩展名前
// 依次尝试 _2、_3…… 直到找到空位。
func (c *Claims) Reserve(dir, name string, existing func(dir string) []string) string {
	dir = filepath.Clean(dir)

	c.mu.Lock()
	defer c.mu.Unlock()

	used, ok := c.dirs[dir]
	if !ok {
		used = make(map[string]struct{})
		if existing != nil {
			for _, n := range existing(dir) {
				used[n] = struct{}{}
			}
		}
		c.dirs[dir] = used
	}

	final := allocName(name, used)
	used[final] = struct{}{}
	return final
}

func allocName(name string, used map[string]struct{}) string {
	if _, ok := used[name]; !ok {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s_%d%s", base, n, ext)
		if _, ok := used[cand]; !ok {
			return cand
		}
	}
}
