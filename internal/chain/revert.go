package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const revertPrefix = "execution reverted"

// revertReason extracts the revert reason from a node error. The ABI-encoded
// Error(string) payload is preferred; nodes that only put the reason in the
// message are handled too. ok is false when err is not a revert.
func revertReason(err error) (reason string, ok bool) {
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, isHex := de.ErrorData().(string); isHex {
			if data, decErr := hexutil.Decode(s); decErr == nil {
				if r, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return r, true
				}
			}
		}
	}
	msg := err.Error()
	i := strings.Index(msg, revertPrefix)
	if i < 0 {
		return "", false
	}
	rest := strings.TrimPrefix(msg[i+len(revertPrefix):], ":")
	return strings.TrimSpace(rest), true
}
