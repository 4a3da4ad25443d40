package builder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/pkg/jsonmessage"
)

// drainBuildOutput consumes the daemon's build stream. The stream is a
// sequence of JSON messages; step output is logged at debug level and an
// error frame turns into the returned error. The stream must be read to the
// end or the daemon never finishes the build.
func (a *Adapter) drainBuildOutput(app string, body io.Reader) error {
	dec := json.NewDecoder(body)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode build output: %w", err)
		}
		if msg.Error != nil {
			return fmt.Errorf("%s", msg.Error.Message)
		}
		if line := strings.TrimSpace(msg.Stream); line != "" {
			a.logger.Debug().Str("app", app).Msg(line)
		}
	}
}
