// Copyright (c) HashiCorp, Inc
// SPDX-License-Identifier: MPL-2.0

package segment

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/flowraft/wal/types"
)

// nameRE is the strict grammar spec §4.4 step 2 requires: decimal digits,
// no padding, exactly "{seg_id}-{seg_start}.wal". Unlike the C++ source's
// sscanf (spec §9, flagged as overly tolerant), anything that doesn't fully
// match is ignored rather than partially parsed.
var nameRE = regexp.MustCompile(`^(0|[1-9][0-9]*)-(0|[1-9][0-9]*)\.wal$`)

// ParseName parses a segment file's base name, returning ok=false (no
// error) for anything that isn't a well-formed segment name so callers can
// silently skip unrelated directory entries, per spec §6 ("Anything else in
// the log directory is ignored").
func ParseName(name string) (info types.SegmentInfo, ok bool) {
	m := nameRE.FindStringSubmatch(name)
	if m == nil {
		return types.SegmentInfo{}, false
	}
	id, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return types.SegmentInfo{}, false
	}
	start, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return types.SegmentInfo{}, false
	}
	return types.SegmentInfo{ID: id, Start: start}, true
}

// ValidateOrder enforces the segment invariant from spec §3: for two
// segments A < B by id, A.Start <= B.Start.
func ValidateOrder(infos []types.SegmentInfo) error {
	for i := 1; i < len(infos); i++ {
		if infos[i].ID <= infos[i-1].ID {
			return fmt.Errorf("segment ids must strictly increase: %d then %d", infos[i-1].ID, infos[i].ID)
		}
		if infos[i].Start < infos[i-1].Start {
			return fmt.Errorf("segment %d has start %d before preceding segment %d's start %d",
				infos[i].ID, infos[i].Start, infos[i-1].ID, infos[i-1].Start)
		}
	}
	return nil
}
