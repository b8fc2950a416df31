package mag

import (
	"context"
	"fmt"
	"time"
)

// transceive performs one write-then-read exchange with the device. Every
// command is acknowledged with a status byte followed by rxLen payload bytes.
// interdelay is the settling time some commands (reset) need between the
// write and the read back; it is a plain sleep, per the datasheet timing.
//
// The two lowest status bits carry the response length and are masked off
// before the status is handed to callers. Transport failures at either stage
// surface as errors and are never retried here.
func (d *MLX90393) transceive(ctx context.Context, request []byte, rxLen int, interdelay time.Duration) (byte, []byte, error) {
	err := d.transport.WriteToAddr(ctx, d.addr, request)
	if err != nil {
		return 0, nil, fmt.Errorf("mlx90393: command %#02x write failed: %w", request[0], err)
	}
	if interdelay > 0 {
		time.Sleep(interdelay)
	}
	buf := make([]byte, rxLen+1)
	err = d.transport.ReadFromAddr(ctx, d.addr, buf)
	if err != nil {
		return 0, nil, fmt.Errorf("mlx90393: command %#02x response read failed: %w", request[0], err)
	}
	return buf[0] &^ statusLenMask, buf[1:], nil
}
