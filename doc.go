// Package cadence implements a spaced-repetition memory engine with a
// calibration and consistency health-monitoring pipeline.
//
// The root package contains the pure engine: the forgetting curve, the
// rating-driven memory state transitions, and the interval scheduler. The
// metrics, audit, and health subpackages roll raw review events into
// calibration statistics, cross-check the event log, and evaluate alert
// rules. A Client ties the engine to the SQLite persistence layer.
//
// Basic usage:
//
//	client, err := cadence.New(cadence.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	result, err := client.SubmitReview(ctx, cadence.SubmitParams{
//	    UserID: "user-1",
//	    CardID: "card-9",
//	    Rating: cadence.Good,
//	})
package cadence
