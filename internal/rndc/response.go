package rndc

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/danmuck/rndcctl/internal/protocol/schema"
	"github.com/danmuck/rndcctl/internal/protocol/wire"
)

var ErrCommandFailed = errors.New("rndc: command failed")

// Response is one command reply. Result is BIND's isc_result_t, 0 on success.
type Response struct {
	Command string      `json:"command"`
	Result  int         `json:"result"`
	Text    string      `json:"text,omitempty"`
	Err     string      `json:"err,omitempty"`
	Data    *wire.Table `json:"data"`
}

func (r Response) OK() bool {
	return r.Result == 0
}

// ParseResponse reads the conventional reply fields from data. A missing
// result counts as success; a non-zero one yields ErrCommandFailed.
func ParseResponse(command string, data *wire.Table) (Response, error) {
	if data == nil {
		data = wire.NewTable()
	}
	resp := Response{
		Command: command,
		Text:    data.Text(schema.KeyText),
		Err:     data.Text(schema.KeyErr),
		Data:    data,
	}
	if raw := data.Text(schema.KeyResult); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			resp.Result = -1
			return resp, fmt.Errorf("%w: result %q", ErrCommandFailed, raw)
		}
		resp.Result = n
	}
	if resp.Result != 0 {
		msg := resp.Err
		if msg == "" {
			msg = "result " + strconv.Itoa(resp.Result)
		}
		return resp, fmt.Errorf("%w: %s", ErrCommandFailed, msg)
	}
	return resp, nil
}
