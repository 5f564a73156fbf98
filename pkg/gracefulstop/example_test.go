package gracefulstop_test

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jihwankim/ceflags/pkg/gracefulstop"
)

// Example demonstrates graceful-stop controller usage.
func Example() {
	controller := gracefulstop.New(gracefulstop.Config{
		StopFile:             "/tmp/ceflags-emergency-stop-test",
		PollInterval:         1 * time.Second,
		EnableSignalHandlers: false, // disabled for the example
	})

	os.Remove(controller.StopFilePath())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller.Start(ctx)

	fmt.Println("Controller started, monitoring for stop request...")
	fmt.Println("Create stop file to trigger a stop:")
	fmt.Printf("  touch %s\n", controller.StopFilePath())

	select {
	case <-controller.StopChannel():
		fmt.Println("Stop detected via channel")
	case <-time.After(3 * time.Second):
		fmt.Println("No stop triggered (timeout)")
	}

	os.Remove(controller.StopFilePath())

	// Output:
	// Controller started, monitoring for stop request...
	// Create stop file to trigger a stop:
	//   touch /tmp/ceflags-emergency-stop-test
	// No stop triggered (timeout)
}
