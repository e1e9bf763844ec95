package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CAMPUSREC_TEST_MODE") == "" {
			_ = os.Setenv("CAMPUSREC_TEST_MODE", "1")
		}
	})
}
