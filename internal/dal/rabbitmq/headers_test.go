package rabbitmq

import (
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
)

func TestHeaderCarrier(t *testing.T) {
	headers := amqp.Table{"count": int32(3)}
	carrier := HeaderCarrier(headers)

	carrier.Set("traceparent", "00-abc-def-01")

	assert.Equal(t, "00-abc-def-01", headers["traceparent"])
	assert.Equal(t, "00-abc-def-01", carrier.Get("traceparent"))
	assert.Empty(t, carrier.Get("count"), "non-string values are ignored")
	assert.ElementsMatch(t, []string{"count", "traceparent"}, carrier.Keys())
}
