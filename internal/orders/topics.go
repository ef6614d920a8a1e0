package orders

const (
	TopicOrderEvents   = "order.events"
	TopicPaymentEvents = "payment.events"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
