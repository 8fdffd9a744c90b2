package soroban

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/stellar/go/xdr"

	"staysync/internal/models"
)

// parseContractEvent converts an XDR contract event into a SyncEvent. The
// first topic symbol is the event type (common contract pattern); the data
// value becomes the payload. Events with no topics are unusable and
// dropped.
func parseContractEvent(event xdr.ContractEvent, txHash string, eventIndex int, seq uint64) (models.SyncEvent, bool) {
	if event.ContractId == nil {
		return models.SyncEvent{}, false
	}
	contractIDBytes, err := event.ContractId.MarshalBinary()
	if err != nil || len(contractIDBytes) == 0 {
		return models.SyncEvent{}, false
	}

	topics := event.Body.V0.Topics
	if len(topics) == 0 {
		return models.SyncEvent{}, false
	}

	payload := map[string]any{}
	if parsed := scValToAny(event.Body.V0.Data); parsed != nil {
		if m, ok := parsed.(map[string]any); ok {
			payload = m
		} else {
			payload["value"] = parsed
		}
	}

	return models.SyncEvent{
		EventID:         fmt.Sprintf("%s:%d", txHash, eventIndex),
		ContractAddress: hex.EncodeToString(contractIDBytes),
		EventType:       scValToString(topics[0]),
		Payload:         payload,
		Sequence:        seq,
		Timestamp:       time.Now(), // TODO: use the ledger close time from the meta
	}, true
}

// scValToString renders an ScVal as a plain string. Used for topics.
func scValToString(val xdr.ScVal) string {
	switch val.Type {
	case xdr.ScValTypeScvBool:
		if val.MustB() {
			return "true"
		}
		return "false"
	case xdr.ScValTypeScvVoid:
		return "void"
	case xdr.ScValTypeScvU32:
		return fmt.Sprintf("%d", val.MustU32())
	case xdr.ScValTypeScvI32:
		return fmt.Sprintf("%d", val.MustI32())
	case xdr.ScValTypeScvU64:
		return fmt.Sprintf("%d", val.MustU64())
	case xdr.ScValTypeScvI64:
		return fmt.Sprintf("%d", val.MustI64())
	case xdr.ScValTypeScvSymbol:
		return string(val.MustSym())
	case xdr.ScValTypeScvString:
		return string(val.MustStr())
	case xdr.ScValTypeScvAddress:
		addr := val.MustAddress()
		str, _ := addr.String()
		return str
	case xdr.ScValTypeScvBytes:
		return hex.EncodeToString(val.MustBytes())
	default:
		return fmt.Sprintf("<%s>", val.Type.String())
	}
}

// scValToAny converts an ScVal into a JSON-friendly Go value. Maps keep
// their symbol/string keys, vectors become slices.
func scValToAny(val xdr.ScVal) any {
	switch val.Type {
	case xdr.ScValTypeScvBool:
		return val.MustB()
	case xdr.ScValTypeScvVoid:
		return nil
	case xdr.ScValTypeScvU32:
		return val.MustU32()
	case xdr.ScValTypeScvI32:
		return val.MustI32()
	case xdr.ScValTypeScvU64:
		return val.MustU64()
	case xdr.ScValTypeScvI64:
		return val.MustI64()
	case xdr.ScValTypeScvSymbol:
		return string(val.MustSym())
	case xdr.ScValTypeScvString:
		return string(val.MustStr())
	case xdr.ScValTypeScvAddress:
		addr := val.MustAddress()
		str, _ := addr.String()
		return str
	case xdr.ScValTypeScvBytes:
		return hex.EncodeToString(val.MustBytes())
	case xdr.ScValTypeScvVec:
		vec := *val.MustVec()
		result := make([]any, len(vec))
		for i, element := range vec {
			result[i] = scValToAny(element)
		}
		return result
	case xdr.ScValTypeScvMap:
		scMap := *val.MustMap()
		result := make(map[string]any)
		for _, entry := range scMap {
			result[scValToString(entry.Key)] = scValToAny(entry.Val)
		}
		return result
	default:
		return val.Type.String()
	}
}
