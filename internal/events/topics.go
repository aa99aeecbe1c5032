package events

// Topics emitted by the quote lifecycle.
const (
	TopicQuoteCreated     = "quote.created"
	TopicQuoteItemAdded   = "quote.item_added"
	TopicQuoteItemRemoved = "quote.item_removed"
	TopicQuoteExported    = "quote.exported"
)
