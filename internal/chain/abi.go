package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal ERC-721 ABI: operator approval only.
const erc721JSON = `[
	{"name":"isApprovedForAll","type":"function","stateMutability":"view","inputs":[
		{"name":"owner","type":"address"},
		{"name":"operator","type":"address"}
	],"outputs":[{"name":"","type":"bool"}]},
	{"name":"setApprovalForAll","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"operator","type":"address"},
		{"name":"approved","type":"bool"}
	],"outputs":[]}
]`

// Hotpot marketplace ABI: listing and prize pool views.
const marketplaceJSON = `[
	{"name":"makeItem","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"_nft","type":"address"},
		{"name":"_tokenId","type":"uint256"},
		{"name":"_price","type":"uint256"}
	],"outputs":[]},
	{"name":"currentPotSize","type":"function","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"uint256"}]},
	{"name":"potLimit","type":"function","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	erc721ABI      = mustParseABI(erc721JSON)
	marketplaceABI = mustParseABI(marketplaceJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("chain: parse abi: %v", err))
	}
	return parsed
}
