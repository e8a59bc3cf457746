package instrumentation

// Graph operation names used as metric labels and span names.
const (
	OperationListRecent = "list_recent"
	OperationListUnread = "list_unread"
	OperationListSince  = "list_since"
	OperationSearch     = "search"
	OperationMe         = "me"
	OperationProbe      = "probe"
)
