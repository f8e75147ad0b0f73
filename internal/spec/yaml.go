package spec

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/medea-project/medea/internal/id"
	"github.com/medea-project/medea/internal/medeaerr"
)

// ParseRoomSpecYAML decodes a RoomSpec body submitted to the Control API
// with a YAML content type (spec §6.2 documents both JSON and YAML bodies).
func ParseRoomSpecYAML(data []byte) (RoomSpec, error) {
	if err := checkRoomSpecDuplicateIDs(data); err != nil {
		return RoomSpec{}, err
	}
	var rs RoomSpec
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RoomSpec{}, fmt.Errorf("parse room spec YAML: %w", err)
	}
	return rs, nil
}

// checkRoomSpecDuplicateIDs rejects a RoomSpec document that maps the same
// Member id, or the same Endpoint id within one Member's pipeline, more
// than once (spec §4.1 DuplicateId). It must run against the raw YAML
// document: once decoded into Go's map[id.MemberId]MemberSpec, a duplicate
// key has already silently overwritten its earlier entry.
func checkRoomSpecDuplicateIDs(data []byte) error {
	root, err := documentRoot(data)
	if err != nil || root == nil {
		return nil // the real Unmarshal below reports any syntax error
	}
	pipeline := mappingValue(root, "pipeline")
	if pipeline == nil {
		return nil
	}
	seen := map[string]bool{}
	for i := 0; i+1 < len(pipeline.Content); i += 2 {
		mid := pipeline.Content[i].Value
		if seen[mid] {
			fid := id.MemberFid{Member: id.MemberId(mid)}
			return medeaerr.Validationf("duplicate_id", fid.String(), "duplicate member id %q in room pipeline", mid)
		}
		seen[mid] = true
		if err := checkMemberPipelineDuplicateIDs(pipeline.Content[i+1], id.MemberId(mid)); err != nil {
			return err
		}
	}
	return nil
}

// checkMemberPipelineDuplicateIDs rejects a Member's pipeline mapping that
// declares the same Endpoint id more than once.
func checkMemberPipelineDuplicateIDs(memberNode *yaml.Node, mid id.MemberId) error {
	pipeline := mappingValue(memberNode, "pipeline")
	if pipeline == nil {
		return nil
	}
	seen := map[string]bool{}
	for i := 0; i+1 < len(pipeline.Content); i += 2 {
		eid := pipeline.Content[i].Value
		if seen[eid] {
			fid := id.Fid{Member: mid, Endpoint: id.EndpointId(eid)}
			return medeaerr.Validationf("duplicate_id", fid.String(), "duplicate endpoint id %q in member %q pipeline", eid, mid)
		}
		seen[eid] = true
	}
	return nil
}

// documentRoot parses data as a raw YAML node tree and returns its root
// mapping node, or nil if data doesn't decode to a mapping.
func documentRoot(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	node := &doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, nil
	}
	return node, nil
}

// mappingValue returns the value node mapped to key in a YAML mapping node,
// or nil if node isn't a mapping or doesn't contain key.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// MarshalRoomSpecYAML renders a RoomSpec back to YAML, for Control API Get
// responses requesting the YAML representation.
func MarshalRoomSpecYAML(rs RoomSpec) ([]byte, error) {
	out, err := yaml.Marshal(rs)
	if err != nil {
		return nil, fmt.Errorf("marshal room spec YAML: %w", err)
	}
	return out, nil
}

// ParseMemberSpecYAML decodes a MemberSpec body.
func ParseMemberSpecYAML(data []byte) (MemberSpec, error) {
	if root, err := documentRoot(data); err == nil && root != nil {
		if err := checkMemberPipelineDuplicateIDs(root, ""); err != nil {
			return MemberSpec{}, err
		}
	}
	var ms MemberSpec
	if err := yaml.Unmarshal(data, &ms); err != nil {
		return MemberSpec{}, fmt.Errorf("parse member spec YAML: %w", err)
	}
	return ms, nil
}

// MarshalMemberSpecYAML renders a MemberSpec back to YAML.
func MarshalMemberSpecYAML(ms MemberSpec) ([]byte, error) {
	out, err := yaml.Marshal(ms)
	if err != nil {
		return nil, fmt.Errorf("marshal member spec YAML: %w", err)
	}
	return out, nil
}
