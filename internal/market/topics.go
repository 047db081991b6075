package market

const (
	TopicOrderPlaced    = "fabric.order.placed"
	TopicOrderCancelled = "fabric.order.cancelled"
	TopicReviewAdded    = "fabric.review.added"
	TopicEmail          = "fabric.notify.email"
)

// Partition key = aggregate id, so events for one order (or one fabric's
// reviews) keep their relative order.
func PartitionKey(id string) []byte { return []byte(id) }
