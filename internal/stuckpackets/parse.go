package stuckpackets

import (
	"fmt"
	"strings"
)

// parseDescription extracts (srcChain, srcChannel, dstChain) from a channel
// description string of the shape emitted by the upstream stuck-packets
// feed, e.g. "osmosis-1 [channel-169] --> neta (juno-1)". Either side may
// carry a parenthesized display name before the real chain id; only the
// source side is required to carry a bracketed channel id.
func parseDescription(desc string) (srcChain, srcChannel, dstChain string, err error) {
	left, right, ok := strings.Cut(desc, " --> ")
	if !ok {
		return "", "", "", fmt.Errorf("parsing description %q: missing \" --> \"", desc)
	}

	srcChain, srcChannelOpt, err := extractChainAndChannel(left)
	if err != nil {
		return "", "", "", fmt.Errorf("parsing source side of %q: %w", desc, err)
	}
	if srcChannelOpt == "" {
		return "", "", "", fmt.Errorf("parsing description %q: missing source channel", desc)
	}

	dstChain, _, err = extractChainAndChannel(right)
	if err != nil {
		return "", "", "", fmt.Errorf("parsing destination side of %q: %w", desc, err)
	}

	return srcChain, srcChannelOpt, dstChain, nil
}

// extractChainAndChannel parses one side of a description, e.g.
// "osmosis-1 [channel-169]" or "foobar (osmosis-1) [channel-169]". When a
// display name precedes the chain id in parens, it is skipped; the channel
// id is optional (the destination side never carries one).
func extractChainAndChannel(s string) (chain, channel string, err error) {
	fields := strings.Fields(s)
	if strings.Contains(s, "(") {
		if len(fields) < 2 {
			return "", "", fmt.Errorf("missing chain after display name in %q", s)
		}
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return "", "", fmt.Errorf("missing chain in %q", s)
	}

	chain = strings.Trim(fields[0], "()")

	if len(fields) > 1 {
		channel = strings.Trim(fields[1], "[]")
	}

	return chain, channel, nil
}
