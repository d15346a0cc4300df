// Package device provides the operations of a GOS target.
//
// A Device serializes transactions on a single GCP channel. A transaction
// acquires the channel, sends a request, awaits the response(s), waits a
// short settle delay and releases the channel. Callers that can't acquire
// the channel in time get ErrBusy, which periodic pollers treat as a
// skipped cycle.
//
// Example:
//
//	tr := transport.New()
//	if err := tr.Open("/dev/ttyUSB0", 115200); err != nil {
//	    return err
//	}
//	dev := device.New(tr)
//	defer dev.Close()
//	if err := dev.Ping(ctx); err != nil {
//	    return err
//	}
//	load, err := dev.CPULoad(ctx)
package device
