// Package classify decodes an opaque typed message envelope into the closed
// set of IBC message variants the reconciliation pipeline cares about
// (§4.2 of the design).
package classify

import (
	"fmt"
	"strings"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/gogoproto/proto"
	transfertypes "github.com/cosmos/ibc-go/v10/modules/apps/transfer/types"
	clienttypes "github.com/cosmos/ibc-go/v10/modules/core/02-client/types"
	channeltypes "github.com/cosmos/ibc-go/v10/modules/core/04-channel/types"
)

// Kind enumerates the closed set of message variants the classifier
// recognizes. It is a tagged union, not a class hierarchy — see the design
// note on polymorphism.
type Kind int

const (
	KindCreateClient Kind = iota
	KindUpdateClient
	KindRecvPacket
	KindAcknowledgement
	KindTimeout
	KindChanOpenInit
	KindChanOpenTry
	KindChanOpenAck
	KindChanOpenConfirm
	KindTransfer
	KindOther
)

// Canonical type URLs. The design notes flag that the Rust original binds
// MsgTimeout under two spellings across releases; the canonical CometBFT/IBC
// form "MsgTimeout" is used here and the other spelling is not replicated.
const (
	URLCreateClient    = "/ibc.core.client.v1.MsgCreateClient"
	URLUpdateClient    = "/ibc.core.client.v1.MsgUpdateClient"
	URLRecvPacket      = "/ibc.core.channel.v1.MsgRecvPacket"
	URLAcknowledgement = "/ibc.core.channel.v1.MsgAcknowledgement"
	URLTimeout         = "/ibc.core.channel.v1.MsgTimeout"
	URLChanOpenInit    = "/ibc.core.channel.v1.MsgChannelOpenInit"
	URLChanOpenTry     = "/ibc.core.channel.v1.MsgChannelOpenTry"
	URLChanOpenAck     = "/ibc.core.channel.v1.MsgChannelOpenAck"
	URLChanOpenConfirm = "/ibc.core.channel.v1.MsgChannelOpenConfirm"
	URLTransfer        = "/ibc.applications.transfer.v1.MsgTransfer"
)

// Msg is a decoded message, tagged by Kind. At most one of the typed fields
// is populated, matching the Kind.
type Msg struct {
	kind    Kind
	typeURL string

	createClient    *clienttypes.MsgCreateClient
	updateClient    *clienttypes.MsgUpdateClient
	recvPacket      *channeltypes.MsgRecvPacket
	acknowledgement *channeltypes.MsgAcknowledgement
	timeout         *channeltypes.MsgTimeout
	chanOpenInit    *channeltypes.MsgChannelOpenInit
	chanOpenTry     *channeltypes.MsgChannelOpenTry
	chanOpenAck     *channeltypes.MsgChannelOpenAck
	chanOpenConfirm *channeltypes.MsgChannelOpenConfirm
	transfer        *transfertypes.MsgTransfer
	other           *codectypes.Any
}

// Kind returns the message's tag.
func (m Msg) Kind() Kind { return m.kind }

// TypeURL returns the protobuf type URL the message was decoded from.
func (m Msg) TypeURL() string { return m.typeURL }

// Decode classifies the given typed envelope. Decoding failure for a
// recognized type URL is an error; an unrecognized type URL falls through to
// KindOther without error (protobuf schema drift between chain versions is
// expected and not itself a failure).
func Decode(any *codectypes.Any) (Msg, error) {
	typeURL := any.TypeUrl

	switch typeURL {
	case URLCreateClient:
		msg := new(clienttypes.MsgCreateClient)
		if err := proto.Unmarshal(any.Value, msg); err != nil {
			return Msg{}, fmt.Errorf("decoding %s: %w", typeURL, err)
		}
		return Msg{kind: KindCreateClient, typeURL: typeURL, createClient: msg}, nil

	case URLUpdateClient:
		msg := new(clienttypes.MsgUpdateClient)
		if err := proto.Unmarshal(any.Value, msg); err != nil {
			return Msg{}, fmt.Errorf("decoding %s: %w", typeURL, err)
		}
		return Msg{kind: KindUpdateClient, typeURL: typeURL, updateClient: msg}, nil

	case URLRecvPacket:
		msg := new(channeltypes.MsgRecvPacket)
		if err := proto.Unmarshal(any.Value, msg); err != nil {
			return Msg{}, fmt.Errorf("decoding %s: %w", typeURL, err)
		}
		return Msg{kind: KindRecvPacket, typeURL: typeURL, recvPacket: msg}, nil

	case URLAcknowledgement:
		msg := new(channeltypes.MsgAcknowledgement)
		if err := proto.Unmarshal(any.Value, msg); err != nil {
			return Msg{}, fmt.Errorf("decoding %s: %w", typeURL, err)
		}
		return Msg{kind: KindAcknowledgement, typeURL: typeURL, acknowledgement: msg}, nil

	case URLTimeout:
		msg := new(channeltypes.MsgTimeout)
		if err := proto.Unmarshal(any.Value, msg); err != nil {
			return Msg{}, fmt.Errorf("decoding %s: %w", typeURL, err)
		}
		return Msg{kind: KindTimeout, typeURL: typeURL, timeout: msg}, nil

	case URLChanOpenInit:
		msg := new(channeltypes.MsgChannelOpenInit)
		if err := proto.Unmarshal(any.Value, msg); err != nil {
			return Msg{}, fmt.Errorf("decoding %s: %w", typeURL, err)
		}
		return Msg{kind: KindChanOpenInit, typeURL: typeURL, chanOpenInit: msg}, nil

	case URLChanOpenTry:
		msg := new(channeltypes.MsgChannelOpenTry)
		if err := proto.Unmarshal(any.Value, msg); err != nil {
			return Msg{}, fmt.Errorf("decoding %s: %w", typeURL, err)
		}
		return Msg{kind: KindChanOpenTry, typeURL: typeURL, chanOpenTry: msg}, nil

	case URLChanOpenAck:
		msg := new(channeltypes.MsgChannelOpenAck)
		if err := proto.Unmarshal(any.Value, msg); err != nil {
			return Msg{}, fmt.Errorf("decoding %s: %w", typeURL, err)
		}
		return Msg{kind: KindChanOpenAck, typeURL: typeURL, chanOpenAck: msg}, nil

	case URLChanOpenConfirm:
		msg := new(channeltypes.MsgChannelOpenConfirm)
		if err := proto.Unmarshal(any.Value, msg); err != nil {
			return Msg{}, fmt.Errorf("decoding %s: %w", typeURL, err)
		}
		return Msg{kind: KindChanOpenConfirm, typeURL: typeURL, chanOpenConfirm: msg}, nil

	case URLTransfer:
		msg := new(transfertypes.MsgTransfer)
		if err := proto.Unmarshal(any.Value, msg); err != nil {
			return Msg{}, fmt.Errorf("decoding %s: %w", typeURL, err)
		}
		return Msg{kind: KindTransfer, typeURL: typeURL, transfer: msg}, nil

	default:
		return Msg{kind: KindOther, typeURL: typeURL, other: any}, nil
	}
}

// IsIBC reports whether the message belongs to the IBC protocol. Every
// recognized variant is IBC by construction; an unrecognized (Other) message
// is IBC iff its type URL starts with "/ibc".
func (m Msg) IsIBC() bool {
	if m.kind == KindOther {
		return strings.HasPrefix(m.other.TypeUrl, "/ibc")
	}
	return true
}

// IsRelevant reports whether the message is one of the three packet-bearing
// messages that enter reconciliation.
func (m Msg) IsRelevant() bool {
	switch m.kind {
	case KindRecvPacket, KindAcknowledgement, KindTimeout:
		return true
	default:
		return false
	}
}

// Packet extracts the embedded packet from a relevant message. It returns
// nil for every other variant, and for a relevant message lacking the
// packet field (malformed payload). The packet field is non-nullable, so an
// absent packet decodes as an all-zero value and is treated as missing.
func (m Msg) Packet() *channeltypes.Packet {
	var p *channeltypes.Packet
	switch m.kind {
	case KindRecvPacket:
		p = &m.recvPacket.Packet
	case KindAcknowledgement:
		p = &m.acknowledgement.Packet
	case KindTimeout:
		p = &m.timeout.Packet
	default:
		return nil
	}
	if p.Sequence == 0 && p.SourcePort == "" && p.SourceChannel == "" && p.DestinationPort == "" && p.DestinationChannel == "" {
		return nil
	}
	return p
}

// Signer returns the submitting address for the variants that carry one.
// Transfer and Other never carry a signer in this model.
func (m Msg) Signer() (string, bool) {
	switch m.kind {
	case KindCreateClient:
		return m.createClient.Signer, true
	case KindUpdateClient:
		return m.updateClient.Signer, true
	case KindRecvPacket:
		return m.recvPacket.Signer, true
	case KindAcknowledgement:
		return m.acknowledgement.Signer, true
	case KindTimeout:
		return m.timeout.Signer, true
	case KindChanOpenInit:
		return m.chanOpenInit.Signer, true
	case KindChanOpenTry:
		return m.chanOpenTry.Signer, true
	case KindChanOpenAck:
		return m.chanOpenAck.Signer, true
	case KindChanOpenConfirm:
		return m.chanOpenConfirm.Signer, true
	default:
		return "", false
	}
}

// String renders a short, human-readable summary for logging, mirroring the
// Rust original's Display impl.
func (m Msg) String() string {
	switch m.kind {
	case KindCreateClient:
		return "CreateClient"
	case KindUpdateClient:
		return fmt.Sprintf("UpdateClient: %s", m.updateClient.ClientId)
	case KindRecvPacket:
		p := m.recvPacket.Packet
		return fmt.Sprintf("RecvPacket: %s -> %s", p.SourceChannel, p.DestinationChannel)
	case KindAcknowledgement:
		p := m.acknowledgement.Packet
		return fmt.Sprintf("Acknowledgement: %s -> %s", p.SourceChannel, p.DestinationChannel)
	case KindTimeout:
		p := m.timeout.Packet
		return fmt.Sprintf("Timeout: %s -> %s", p.SourceChannel, p.DestinationChannel)
	case KindChanOpenInit:
		return fmt.Sprintf("ChanOpenInit: %s", m.chanOpenInit.PortId)
	case KindChanOpenTry:
		return fmt.Sprintf("ChanOpenTry: %s", m.chanOpenTry.PortId)
	case KindChanOpenAck:
		return fmt.Sprintf("ChanOpenAck: %s/%s", m.chanOpenAck.ChannelId, m.chanOpenAck.PortId)
	case KindChanOpenConfirm:
		return fmt.Sprintf("ChanOpenConfirm: %s/%s", m.chanOpenConfirm.ChannelId, m.chanOpenConfirm.PortId)
	case KindTransfer:
		return fmt.Sprintf("Transfer: %s/%s", m.transfer.SourceChannel, m.transfer.SourcePort)
	default:
		return fmt.Sprintf("Unhandled msg: %s", m.typeURL)
	}
}
