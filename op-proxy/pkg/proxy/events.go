package proxy

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DeployedEvent is the factory's Deployed(proxy, implementation, admin) log.
type DeployedEvent struct {
	Proxy          common.Address
	Implementation common.Address
	Admin          common.Address
}

// UpgradedEvent is the factory's Upgraded(proxy, implementation) log.
type UpgradedEvent struct {
	Proxy          common.Address
	Implementation common.Address
}

// ParseDeployed finds the Deployed event the factory emitted in receipt.
// Logs of other contracts are ignored, whatever their topics.
func ParseDeployed(receipt *types.Receipt, factory common.Address) (*DeployedEvent, error) {
	for _, l := range receipt.Logs {
		if l.Address != factory || len(l.Topics) == 0 || l.Topics[0] != EventDeployed.Topic0 {
			continue
		}
		var ev DeployedEvent
		if err := EventDeployed.DecodeArgs(l, &ev.Proxy, &ev.Implementation, &ev.Admin); err != nil {
			return nil, fmt.Errorf("failed to decode Deployed event: %w", err)
		}
		return &ev, nil
	}
	return nil, fmt.Errorf("no Deployed event from factory %s in tx %s", factory, receipt.TxHash)
}

// ParseUpgraded finds the Upgraded event the factory emitted in receipt.
func ParseUpgraded(receipt *types.Receipt, factory common.Address) (*UpgradedEvent, error) {
	for _, l := range receipt.Logs {
		if l.Address != factory || len(l.Topics) == 0 || l.Topics[0] != EventUpgraded.Topic0 {
			continue
		}
		var ev UpgradedEvent
		if err := EventUpgraded.DecodeArgs(l, &ev.Proxy, &ev.Implementation); err != nil {
			return nil, fmt.Errorf("failed to decode Upgraded event: %w", err)
		}
		return &ev, nil
	}
	return nil, fmt.Errorf("no Upgraded event from factory %s in tx %s", factory, receipt.TxHash)
}
