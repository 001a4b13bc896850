package gateway

import "strings"

// MethodID is the closed set of handler identifiers a method name resolves
// to at parse time (spec §9's re-expression of dynamic dispatch). An
// unrecognized name resolves to methodUnknown.
type MethodID int

const (
	methodUnknown MethodID = iota
	methodHeadState
	methodBlockHeader
	methodFullBlock
	methodOpsInBlock
	methodActiveWitnesses
	methodTransaction
	methodSubscribeHeadState
	methodUnsubscribeHeadState
	methodSubscribeBlockHeaders
	methodUnsubscribeBlockHeaders
	methodSubscribeFullBlocks
	methodUnsubscribeFullBlocks
	methodSubscribeOperations
	methodUnsubscribeOperations
	methodSubscribeWitnesses
	methodUnsubscribeWitnesses
)

// namePrefixes are stripped before bare-name lookup, so a method is
// accepted with or without a namespace prefix (§4.4, §6).
var namePrefixes = []string{"condenser_api.", "market_history_api."}

var methodTable = map[string]MethodID{
	"get_dynamic_global_properties": methodHeadState,
	"get_block_header":              methodBlockHeader,
	"get_block":                     methodFullBlock,
	"get_ops_in_block":              methodOpsInBlock,
	"get_active_witnesses":          methodActiveWitnesses,
	"get_transaction":                methodTransaction,

	"subscribe_global_properties":   methodSubscribeHeadState,
	"unsubscribe_global_properties": methodUnsubscribeHeadState,
	"subscribe_block_headers":       methodSubscribeBlockHeaders,
	"unsubscribe_block_headers":     methodUnsubscribeBlockHeaders,
	"subscribe_blocks":              methodSubscribeFullBlocks,
	"unsubscribe_blocks":            methodUnsubscribeFullBlocks,
	"subscribe_operations":          methodSubscribeOperations,
	"unsubscribe_operations":        methodUnsubscribeOperations,
	"subscribe_witnesses":           methodSubscribeWitnesses,
	"unsubscribe_witnesses":         methodUnsubscribeWitnesses,
}

// availableAPIs and subscriptionAPIs list the method names advertised in
// the connection hello frame (§6).
var availableAPIs = []string{
	"get_dynamic_global_properties",
	"get_block_header",
	"get_block",
	"get_ops_in_block",
	"get_active_witnesses",
	"get_transaction",
}

var subscriptionAPIs = []string{
	"subscribe_global_properties", "unsubscribe_global_properties",
	"subscribe_block_headers", "unsubscribe_block_headers",
	"subscribe_blocks", "unsubscribe_blocks",
	"subscribe_operations", "unsubscribe_operations",
	"subscribe_witnesses", "unsubscribe_witnesses",
}

// resolveMethod maps a bare or namespace-prefixed method name to its
// MethodID, returning methodUnknown for anything not in the table.
func resolveMethod(name string) MethodID {
	bare := name
	for _, p := range namePrefixes {
		if strings.HasPrefix(name, p) {
			bare = strings.TrimPrefix(name, p)
			break
		}
	}
	if id, ok := methodTable[bare]; ok {
		return id
	}
	return methodUnknown
}
