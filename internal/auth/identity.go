// Package auth produces the credentials a social session is opened with:
// auth chains signed by an Ethereum identity, the signed header set sent
// in-band on the WebSocket, and the bearer token obtained from the synapse
// login endpoint.
package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Link types of an auth chain.
const (
	LinkSigner       = "SIGNER"
	LinkEphemeral    = "ECDSA_EPHEMERAL"
	LinkSignedEntity = "ECDSA_SIGNED_ENTITY"
)

const expirationLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrIdentityExpired  = errors.New("identity expired")
	ErrInvalidAuthChain = errors.New("invalid auth chain")
)

// AuthLink is one signed statement of an auth chain.
type AuthLink struct {
	Type      string `json:"type"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// AuthChain proves that the owner of the first link signed the payload of
// the last one, through a delegation to an ephemeral key.
type AuthChain []AuthLink

// Identity is a caller identity capable of signing arbitrary payloads.
type Identity interface {
	// Address returns the owner's account address.
	Address() string

	// SignPayload returns an auth chain whose last link signs payload.
	SignPayload(payload string) (AuthChain, error)
}

// EphemeralIdentity is an Identity that signs with a short-lived key. The
// account key only signs the delegation to the ephemeral key, once, when
// the identity is created.
type EphemeralIdentity struct {
	address    common.Address
	ephemeral  *ecdsa.PrivateKey
	expiration time.Time
	delegation AuthChain
	now        func() time.Time
}

var _ Identity = (*EphemeralIdentity)(nil)

// NewIdentity creates an ephemeral key and delegates to it from account
// for ttl.
func NewIdentity(account *ecdsa.PrivateKey, ttl time.Duration) (*EphemeralIdentity, error) {
	ephemeral, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}

	address := crypto.PubkeyToAddress(account.PublicKey)
	expiration := time.Now().Add(ttl).UTC()

	message := ephemeralMessage(crypto.PubkeyToAddress(ephemeral.PublicKey), expiration)
	signature, err := PersonalSign(account, message)
	if err != nil {
		return nil, err
	}

	return &EphemeralIdentity{
		address:    address,
		ephemeral:  ephemeral,
		expiration: expiration,
		delegation: AuthChain{
			{Type: LinkSigner, Payload: address.Hex()},
			{Type: LinkEphemeral, Payload: message, Signature: signature},
		},
		now: time.Now,
	}, nil
}

// NewIdentityFromHex is NewIdentity for a hex encoded account key, with or
// without the 0x prefix.
func NewIdentityFromHex(accountKey string, ttl time.Duration) (*EphemeralIdentity, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(accountKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse account key: %w", err)
	}
	return NewIdentity(key, ttl)
}

func (id *EphemeralIdentity) Address() string {
	return id.address.Hex()
}

func (id *EphemeralIdentity) Expiration() time.Time {
	return id.expiration
}

// SignPayload signs payload with the ephemeral key. It fails with
// ErrIdentityExpired once the delegation has expired.
func (id *EphemeralIdentity) SignPayload(payload string) (AuthChain, error) {
	if !id.now().Before(id.expiration) {
		return nil, ErrIdentityExpired
	}

	signature, err := PersonalSign(id.ephemeral, payload)
	if err != nil {
		return nil, err
	}

	chain := make(AuthChain, 0, len(id.delegation)+1)
	chain = append(chain, id.delegation...)
	chain = append(chain, AuthLink{Type: LinkSignedEntity, Payload: payload, Signature: signature})
	return chain, nil
}

func ephemeralMessage(ephemeral common.Address, expiration time.Time) string {
	return fmt.Sprintf("Decentraland Login\nEphemeral address: %s\nExpiration: %s",
		ephemeral.Hex(), expiration.UTC().Format(expirationLayout))
}

// PersonalSign signs message the way wallets implement personal_sign and
// returns the 0x prefixed 65 byte signature with V in {27, 28}.
func PersonalSign(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// RecoverAddress returns the address that produced a PersonalSign
// signature of message.
func RecoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature length %d", len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyAuthChain checks every link of chain and that its last link signs
// payload. It returns the owner address.
func VerifyAuthChain(chain AuthChain, payload string, now time.Time) (string, error) {
	if len(chain) < 2 || chain[0].Type != LinkSigner {
		return "", fmt.Errorf("%w: missing signer", ErrInvalidAuthChain)
	}
	if !common.IsHexAddress(chain[0].Payload) {
		return "", fmt.Errorf("%w: signer %q is not an address", ErrInvalidAuthChain, chain[0].Payload)
	}

	owner := common.HexToAddress(chain[0].Payload)
	authority := owner

	for i, link := range chain[1:] {
		signer, err := RecoverAddress(link.Payload, link.Signature)
		if err != nil {
			return "", fmt.Errorf("%w: link %d: %v", ErrInvalidAuthChain, i+1, err)
		}
		if signer != authority {
			return "", fmt.Errorf("%w: link %d signed by %s, want %s", ErrInvalidAuthChain, i+1, signer.Hex(), authority.Hex())
		}

		switch link.Type {
		case LinkEphemeral:
			ephemeral, expiration, err := parseEphemeralMessage(link.Payload)
			if err != nil {
				return "", fmt.Errorf("%w: link %d: %v", ErrInvalidAuthChain, i+1, err)
			}
			if !now.Before(expiration) {
				return "", ErrIdentityExpired
			}
			authority = ephemeral
		case LinkSignedEntity:
			if i+1 != len(chain)-1 {
				return "", fmt.Errorf("%w: signed entity before the end of the chain", ErrInvalidAuthChain)
			}
			if link.Payload != payload {
				return "", fmt.Errorf("%w: payload mismatch", ErrInvalidAuthChain)
			}
			return owner.Hex(), nil
		default:
			return "", fmt.Errorf("%w: unknown link type %q", ErrInvalidAuthChain, link.Type)
		}
	}

	return "", fmt.Errorf("%w: no signed entity", ErrInvalidAuthChain)
}

func parseEphemeralMessage(message string) (common.Address, time.Time, error) {
	var address, expiration string
	for _, line := range strings.Split(message, "\n") {
		if v, ok := strings.CutPrefix(line, "Ephemeral address: "); ok {
			address = v
		}
		if v, ok := strings.CutPrefix(line, "Expiration: "); ok {
			expiration = v
		}
	}

	if !common.IsHexAddress(address) {
		return common.Address{}, time.Time{}, fmt.Errorf("ephemeral address %q", address)
	}
	exp, err := time.Parse(time.RFC3339, expiration)
	if err != nil {
		return common.Address{}, time.Time{}, fmt.Errorf("expiration: %w", err)
	}
	return common.HexToAddress(address), exp, nil
}
