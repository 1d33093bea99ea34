package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/raido/internal/expand"
)

// Discover lists unpacked batch directories under workRoot, sorted ascending
// by name so older batches are always processed before newer ones.
func Discover(workRoot string) ([]string, error) {
	entries, err := os.ReadDir(workRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("batch: discover %s: %w", workRoot, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, filepath.Join(workRoot, e.Name()))
		}
	}
	return out, nil
}

// DiscoverArchives lists harvest archives in the inbox, sorted ascending by
// name.
func DiscoverArchives(inbox string) ([]string, error) {
	entries, err := os.ReadDir(inbox)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("batch: discover archives %s: %w", inbox, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), expand.Extension) {
			out = append(out, filepath.Join(inbox, e.Name()))
		}
	}
	return out, nil
}
