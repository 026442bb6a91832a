package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CLEANOPS_TEST_MODE") == "" {
			_ = os.Setenv("CLEANOPS_TEST_MODE", "1")
		}
	})
}
