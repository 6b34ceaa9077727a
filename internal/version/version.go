// Package version хранит сведения о сборке, заполняемые через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/shop/internal/version.version=v1.2.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// Version возвращает только номер версии.
func Version() string { return version }

// String возвращает строку для `shop -version` и логов старта.
func String() string {
	return fmt.Sprintf("shop version=%s commit=%s date=%s go=%s", version, commit, date, runtime.Version())
}
