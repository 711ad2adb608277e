// Package info holds build information and the identity of this process.
package info

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// set with -ldflags "-X clob/pkg/info.Version=..."
var (
	Version    = "0.0.0"
	Dist       = "1"
	GitRev     = "000000"
	BuildTime  = "2000-01-01_00:00:00"
	InstanceID = uuid.New().String()
)

var ErrInvalid = errors.New("invalid version")

var (
	EnvMode = "development"
)

func init() {
	mode := os.Getenv("CLOB_MODE")
	if mode != "" {
		EnvMode = mode
	}
}

// String short description used in startup logs and service registration
func String() string {
	return fmt.Sprintf("v%s-%s (%s, %s) instance:%s", Version, Dist, GitRev, BuildTime, InstanceID)
}

// IsNewerVersion returns A is newer than B
func IsNewerVersion(verA, distA, verB, distB string) (bool, error) {
	aa := strings.Split(verA, ".")
	bb := strings.Split(verB, ".")
	if len(aa) != 3 || len(bb) != 3 {
		return false, ErrInvalid
	}

	for i := 0; i < 3; i++ {
		a, b := parseInt64(aa[i]), parseInt64(bb[i])
		if a != b {
			return a > b, nil
		}
	}
	return parseInt64(distA) > parseInt64(distB), nil
}

func parseInt64(str string) int64 {
	res, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0
	}
	return res
}
