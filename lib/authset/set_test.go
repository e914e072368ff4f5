// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authset

import (
	"strings"
	"testing"
)

func TestSetFindIteratesRepeatedKinds(t *testing.T) {
	set := Set{
		PurposeTag(PurposeSign),
		EnumTag(TagAlgorithm, uint32(AlgorithmRSA)),
		PurposeTag(PurposeVerify),
		UintTag(TagUserID, 3),
	}

	var purposes []Purpose
	for index := set.Find(TagPurpose, 0); index >= 0; index = set.Find(TagPurpose, index+1) {
		purposes = append(purposes, Purpose(set[index].Integer))
	}
	if len(purposes) != 2 || purposes[0] != PurposeSign || purposes[1] != PurposeVerify {
		t.Errorf("purposes = %v, want [SIGN VERIFY]", purposes)
	}

	if index := set.Find(TagPurpose, 3); index != -1 {
		t.Errorf("Find past last match = %d, want -1", index)
	}
	if index := set.Find(TagUserID, -4); index != 3 {
		t.Errorf("Find with negative start = %d, want 3", index)
	}
	if index := set.Find(TagAuthTimeout, 0); index != -1 {
		t.Errorf("Find missing kind = %d, want -1", index)
	}
}

func TestSetAllPreservesOrder(t *testing.T) {
	set := Set{
		EnumTag(TagRescopingAdd, uint32(TagSingleUsePerBoot)),
		UintTag(TagUserID, 1),
		EnumTag(TagRescopingAdd, uint32(TagUsageExpireDatetime)),
	}
	all := set.All(TagRescopingAdd)
	if len(all) != 2 {
		t.Fatalf("All returned %d tags, want 2", len(all))
	}
	if Kind(all[0].Integer) != TagSingleUsePerBoot || Kind(all[1].Integer) != TagUsageExpireDatetime {
		t.Errorf("All = %v, want insertion order", all)
	}
	if set.All(TagPurpose) != nil {
		t.Error("All for a missing kind should be nil")
	}
}

func TestSetContainsValue(t *testing.T) {
	set := Set{
		EnumTag(TagRescopingDel, uint32(TagUserID)),
		EnumTag(TagRescopingDel, uint32(TagAuthTimeout)),
	}
	if !set.ContainsValue(TagRescopingDel, uint64(TagAuthTimeout)) {
		t.Error("ContainsValue should find the second RESCOPING_DEL entry")
	}
	if set.ContainsValue(TagRescopingAdd, uint64(TagUserID)) {
		t.Error("ContainsValue should not match a different kind")
	}
	if !set.ContainsEqual(EnumTag(TagRescopingDel, uint32(TagUserID))) {
		t.Error("ContainsEqual should find an identical tag")
	}
}

func TestSetValidate(t *testing.T) {
	tests := []struct {
		name    string
		set     Set
		wantErr string
	}{
		{
			name: "valid",
			set: Set{
				PurposeTag(PurposeSign),
				PurposeTag(PurposeVerify),
				UintTag(TagUserID, 10),
				BoolTag(TagSingleUsePerBoot),
				BytesTag(TagApplicationID, []byte("app")),
				EnumTag(TagRescopingAdd, uint32(TagAuthTimeout)),
			},
		},
		{
			name:    "unknown kind",
			set:     Set{UintTag(Kind(CategoryUint)|9999, 1)},
			wantErr: "unknown tag kind",
		},
		{
			name:    "blob on uint",
			set:     Set{{Kind: TagUserID, Integer: 1, Blob: []byte("x")}},
			wantErr: "carries a bool or blob",
		},
		{
			name:    "uint overflow",
			set:     Set{UlongTag(TagUserID, 1<<40)},
			wantErr: "does not fit in 32 bits",
		},
		{
			name:    "date past the Unix range",
			set:     Set{UlongTag(TagActiveDatetime, 1<<63)},
			wantErr: "past the largest Unix time",
		},
		{
			name: "largest date",
			set:  Set{UlongTag(TagUsageExpireDatetime, 1<<63-1)},
		},
		{
			name:    "false bool",
			set:     Set{{Kind: TagAllUsers}},
			wantErr: "must be true",
		},
		{
			name:    "integer on blob",
			set:     Set{{Kind: TagApplicationID, Integer: 3}},
			wantErr: "carries an integer or bool",
		},
		{
			name:    "rescoping names unknown kind",
			set:     Set{EnumTag(TagRescopingAdd, 12345)},
			wantErr: "names unknown tag kind",
		},
		{
			name:    "duplicate non-repeatable",
			set:     Set{UintTag(TagUserID, 1), UintTag(TagUserID, 2)},
			wantErr: "not repeatable",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.set.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("Validate() = %q, want it to contain %q", err, test.wantErr)
			}
		})
	}
}
