package app

import (
	"os"
	"sync"
)

const testModeEnv = "TOOLDESK_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})

// InTestMode reports whether binaries should skip dialing Redis, Postgres and
// the asynq broker. The environment is read once per process.
func InTestMode() bool {
	return testMode()
}
