package saga

// Topic names shared by every producer and consumer in the saga.
// Single source of truth -- never hardcode these strings elsewhere.
const (
	TopicOrderPlaced    = "order.placed"
	TopicOrderValidated = "order.validated"
	TopicOrderPaid      = "order.paid"
	TopicOrderCompleted = "order.completed"
	TopicOrderFailed    = "order.failed"
	TopicPaymentFailed  = "payment.failed"

	DLTSuffix = ".DLT"
)

// DLT returns the dead-letter counterpart of a topic,
// e.g. "order.placed" -> "order.placed.DLT". Idempotent: a dead-letter
// topic maps to itself.
func DLT(topic string) string {
	if IsDLT(topic) {
		return topic
	}
	return topic + DLTSuffix
}

// IsDLT reports whether the topic is a dead-letter topic.
func IsDLT(topic string) bool {
	return len(topic) > len(DLTSuffix) && topic[len(topic)-len(DLTSuffix):] == DLTSuffix
}
