// Package serial is a small termios driver for Linux serial ports, used by
// serial-console to own the device it relays to network clients.
//
// # Basic Usage
//
// Open a serial port with default configuration (115200 8N1, no flow control):
//
//	port, err := serial.Open("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	n, err := port.Write([]byte("Hello"))
//	buffer := make([]byte, 1024)
//	n, err = port.Read(buffer)
//
// # Configuration Options
//
// Use functional options for custom configuration:
//
//	parity, _ := serial.ParseParity("E")
//	flow, _ := serial.ParseFlowControl("hw")
//	port, err := serial.Open("/dev/ttyUSB0",
//	    serial.WithBaudRate(9600),
//	    serial.WithDataBits(7),
//	    serial.WithParity(parity),
//	    serial.WithFlowControl(flow),
//	)
//
// # Reads and Close
//
// Read waits in poll(2) on the tty and on an internal wakeup pipe, so Close
// from another goroutine always unblocks a pending Read with ErrPortClosed.
// With WithReadTimeout set, a Read that sees no data in time returns
// ErrReadTimeout; callers are expected to retry. A zero-byte read from the
// device is returned as io.EOF.
//
// # Port Discovery
//
//	ports, err := serial.ListPorts()
//	for _, portPath := range ports {
//	    info, _ := serial.GetPortInfo(portPath)
//	    fmt.Printf("%s: %s (VID=%s PID=%s Serial=%s)\n",
//	        info.Path, info.Description, info.VendorID, info.ProductID, info.SerialNumber)
//	}
//
// # Error Handling
//
// Use errors.Is() against the exported sentinels:
//
//	if errors.Is(err, serial.ErrInvalidConfig) {
//	    // reject the configuration before starting anything
//	}
package serial
