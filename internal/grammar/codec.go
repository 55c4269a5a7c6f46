package grammar

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Parsed nodes are cached between runs, so the codec tags each node
// with its kind and reinflates the matching concrete type.

type nodeEnvelope struct {
	Kind Kind            `json:"kind"`
	Node json.RawMessage `json:"node"`
}

type multiFeatureJSON struct {
	Verbatim string           `json:"verbatim"`
	Groups   [][]nodeEnvelope `json:"groups"`
	Specific bool             `json:"specific"`
}

// MarshalNodes encodes a parse result for storage.
func MarshalNodes(nodes []Node) ([]byte, error) {
	envs := make([]nodeEnvelope, 0, len(nodes))
	for _, n := range nodes {
		env, err := encodeNode(n)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	data, err := json.Marshal(envs)
	if err != nil {
		return nil, eris.Wrap(err, "grammar: marshal nodes")
	}
	return data, nil
}

// UnmarshalNodes decodes a stored parse result back into typed nodes.
func UnmarshalNodes(data []byte) ([]Node, error) {
	var envs []nodeEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, eris.Wrap(err, "grammar: unmarshal nodes")
	}
	nodes := make([]Node, 0, len(envs))
	for _, env := range envs {
		n, err := decodeNode(env)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func encodeNode(n Node) (nodeEnvelope, error) {
	var (
		body any
		err  error
	)
	switch t := n.(type) {
	case *Uncertain:
		var inner nodeEnvelope
		inner, err = encodeNode(t.Wrapped)
		body = inner
	case *MultiFeature:
		body, err = encodeMultiFeature(t)
	default:
		body = n
	}
	if err != nil {
		return nodeEnvelope{}, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nodeEnvelope{}, eris.Wrapf(err, "grammar: marshal %s node", n.Kind())
	}
	return nodeEnvelope{Kind: n.Kind(), Node: raw}, nil
}

func encodeMultiFeature(m *MultiFeature) (multiFeatureJSON, error) {
	out := multiFeatureJSON{Verbatim: m.VerbatimText, Specific: m.IsSpecific}
	for _, group := range m.Groups {
		envs := make([]nodeEnvelope, 0, len(group))
		for _, n := range group {
			env, err := encodeNode(n)
			if err != nil {
				return multiFeatureJSON{}, err
			}
			envs = append(envs, env)
		}
		out.Groups = append(out.Groups, envs)
	}
	return out, nil
}

func decodeNode(env nodeEnvelope) (Node, error) {
	switch env.Kind {
	case KindUncertain:
		var inner nodeEnvelope
		if err := json.Unmarshal(env.Node, &inner); err != nil {
			return nil, eris.Wrap(err, "grammar: unmarshal uncertain node")
		}
		wrapped, err := decodeNode(inner)
		if err != nil {
			return nil, err
		}
		return &Uncertain{Wrapped: wrapped}, nil
	case KindMultiFeature:
		return decodeMultiFeature(env.Node)
	}

	var n Node
	switch env.Kind {
	case KindSimple:
		n = &Simple{}
	case KindFeature:
		n = &Feature{}
	case KindModified:
		n = &Modified{}
	case KindDirection:
		n = &Direction{}
	case KindBetween:
		n = &Between{}
	case KindBorder:
		n = &Border{}
	case KindJunction:
		n = &Junction{}
	case KindOffshore:
		n = &Offshore{}
	case KindPLSS:
		n = &PLSS{}
	case KindMeasurement:
		n = &Measurement{}
	default:
		return nil, eris.Errorf("grammar: unknown node kind %q", env.Kind)
	}
	if err := json.Unmarshal(env.Node, n); err != nil {
		return nil, eris.Wrapf(err, "grammar: unmarshal %s node", env.Kind)
	}
	return n, nil
}

func decodeMultiFeature(raw json.RawMessage) (*MultiFeature, error) {
	var body multiFeatureJSON
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, eris.Wrap(err, "grammar: unmarshal multifeature node")
	}
	m := &MultiFeature{VerbatimText: body.Verbatim, IsSpecific: body.Specific}
	for _, envs := range body.Groups {
		group := make([]Node, 0, len(envs))
		for _, env := range envs {
			n, err := decodeNode(env)
			if err != nil {
				return nil, err
			}
			group = append(group, n)
		}
		m.Groups = append(m.Groups, group)
	}
	return m, nil
}
