package orders

const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderCancelled     = "order.cancelled"
	TopicOrderStatusChanged = "order.status_changed"
)

// Topics lists everything the projector subscribes to.
var Topics = []string{TopicOrderPlaced, TopicOrderCancelled, TopicOrderStatusChanged}

// Partition key = order_id, so all events of one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
