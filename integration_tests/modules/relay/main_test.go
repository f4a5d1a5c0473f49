package relay_integration_tests

import (
	"log"
	"os"
	"testing"

	"github.com/Black-And-White-Club/arena-sync/integration_tests/testutils"
)

var testEnv *testutils.TestEnvironment

func TestMain(m *testing.M) {
	if os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(0)
	}
	env, err := testutils.NewTestEnvironment(testutils.Options{NATS: true})
	if err != nil {
		log.Fatalf("Failed to set up test environment: %v", err)
	}
	testEnv = env

	code := m.Run()
	env.Cleanup()
	os.Exit(code)
}
