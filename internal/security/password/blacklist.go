package password

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Blacklist de contraseñas comunes, comparadas en minúsculas.
type Blacklist struct {
	mu   sync.RWMutex
	data map[string]struct{}
}

// NewBlacklist arma una blacklist en memoria.
func NewBlacklist(words ...string) *Blacklist {
	bl := &Blacklist{data: make(map[string]struct{}, len(words))}
	for _, w := range words {
		bl.add(w)
	}
	return bl
}

// LoadBlacklist lee un archivo (una palabra por línea, "#" comenta). Path
// vacío devuelve una blacklist vacía.
func LoadBlacklist(path string) (*Blacklist, error) {
	bl := NewBlacklist()
	if strings.TrimSpace(path) == "" {
		return bl, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		bl.add(sc.Text())
	}
	return bl, sc.Err()
}

func (b *Blacklist) add(w string) {
	s := strings.TrimSpace(strings.ToLower(w))
	if s == "" || strings.HasPrefix(s, "#") {
		return
	}
	b.mu.Lock()
	b.data[s] = struct{}{}
	b.mu.Unlock()
}

func (b *Blacklist) Contains(pwd string) bool {
	if b == nil {
		return false
	}
	p := strings.ToLower(strings.TrimSpace(pwd))
	b.mu.RLock()
	_, ok := b.data[p]
	b.mu.RUnlock()
	return ok
}

func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}
