package cli

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabdesk/fabdesk/jobs"
)

func TestTriggerRejectsUnknownInput(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewJobsCLI(mr.Addr())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Trigger(context.Background(), "mail:send")
	assert.ErrorContains(t, err, "unsupported job")

	_, err = c.Trigger(context.Background(), jobs.TaskStockScan, "bakery")
	assert.ErrorContains(t, err, "unknown business")

	_, err = NewJobsCLI("")
	assert.Error(t, err)
}

func TestTriggerStockScanEnqueues(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewJobsCLI(mr.Addr())
	require.NoError(t, err)
	defer c.Close()

	info, err := c.Trigger(context.Background(), jobs.TaskStockScan, "cnc")
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskStockScan, info.Type)
	assert.JSONEq(t, `{"businesses":["cnc"]}`, string(info.Payload))
}
