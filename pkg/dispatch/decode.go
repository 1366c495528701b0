package dispatch

import (
	"fmt"

	"github.com/eigerco/rocker/pkg/rocker"
)

// DecodeOps turns tagged tuples into batch operations:
//
//	{"put", key, value}
//	{"put_cf", keyspace, key, value}
//	{"delete", key}
//	{"delete_cf", keyspace, key}
//
// Tuples with an unrecognised tag are skipped. A recognised tag with the
// wrong arity or argument types is ErrBadArg.
func DecodeOps(terms []any) ([]rocker.Op, error) {
	ops := make([]rocker.Op, 0, len(terms))
	for i, term := range terms {
		tuple, isTuple := term.([]any)
		if !isTuple || len(tuple) == 0 {
			return nil, fmt.Errorf("%w: operation %d is not a tuple", ErrBadArg, i)
		}
		tag, err := decodeAtom(tuple[0])
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}

		var op rocker.Op
		switch tag {
		case "put":
			op, err = decodePut(tuple)
		case "put_cf":
			op, err = decodePutKeyspace(tuple)
		case "delete":
			op, err = decodeDelete(tuple)
		case "delete_cf":
			op, err = decodeDeleteKeyspace(tuple)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i, tag, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func decodePut(tuple []any) (rocker.Op, error) {
	if len(tuple) != 3 {
		return rocker.Op{}, arityError(3, len(tuple))
	}
	key, err := decodeBinary(tuple[1])
	if err != nil {
		return rocker.Op{}, err
	}
	value, err := decodeBinary(tuple[2])
	if err != nil {
		return rocker.Op{}, err
	}
	return rocker.PutOp(key, value), nil
}

func decodePutKeyspace(tuple []any) (rocker.Op, error) {
	if len(tuple) != 4 {
		return rocker.Op{}, arityError(4, len(tuple))
	}
	name, err := decodeText(tuple[1])
	if err != nil {
		return rocker.Op{}, err
	}
	key, err := decodeBinary(tuple[2])
	if err != nil {
		return rocker.Op{}, err
	}
	value, err := decodeBinary(tuple[3])
	if err != nil {
		return rocker.Op{}, err
	}
	return rocker.PutKeyspaceOp(name, key, value), nil
}

func decodeDelete(tuple []any) (rocker.Op, error) {
	if len(tuple) != 2 {
		return rocker.Op{}, arityError(2, len(tuple))
	}
	key, err := decodeBinary(tuple[1])
	if err != nil {
		return rocker.Op{}, err
	}
	return rocker.DeleteOp(key), nil
}

func decodeDeleteKeyspace(tuple []any) (rocker.Op, error) {
	if len(tuple) != 3 {
		return rocker.Op{}, arityError(3, len(tuple))
	}
	name, err := decodeText(tuple[1])
	if err != nil {
		return rocker.Op{}, err
	}
	key, err := decodeBinary(tuple[2])
	if err != nil {
		return rocker.Op{}, err
	}
	return rocker.DeleteKeyspaceOp(name, key), nil
}

// DecodeMode turns an iterator mode term into a cursor mode. An empty term
// or an unknown atom means start; a direction other than "reverse" means
// forward.
func DecodeMode(terms []any) (rocker.Mode, error) {
	if len(terms) == 0 {
		return rocker.Start(), nil
	}
	atom, err := decodeAtom(terms[0])
	if err != nil {
		return rocker.Mode{}, err
	}
	switch atom {
	case "end":
		return rocker.End(), nil
	case "from":
		if len(terms) < 2 {
			return rocker.Mode{}, fmt.Errorf("%w: from without a key", ErrBadArg)
		}
		key, err := decodeBinary(terms[1])
		if err != nil {
			return rocker.Mode{}, err
		}
		if len(terms) < 3 {
			return rocker.FromKey(key), nil
		}
		direction, err := decodeAtom(terms[2])
		if err != nil {
			return rocker.Mode{}, err
		}
		if direction == "reverse" {
			return rocker.From(key, rocker.Reverse), nil
		}
		return rocker.From(key, rocker.Forward), nil
	default:
		return rocker.Start(), nil
	}
}

func decodeAtom(term any) (string, error) {
	switch v := term.(type) {
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("%w: expected an atom, got %T", ErrBadArg, term)
	}
}

func decodeText(term any) (string, error) {
	switch v := term.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("%w: expected text, got %T", ErrBadArg, term)
	}
}

func decodeBinary(term any) ([]byte, error) {
	switch v := term.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("%w: expected a binary, got %T", ErrBadArg, term)
	}
}

func arityError(want, got int) error {
	return fmt.Errorf("%w: expected %d elements, got %d", ErrBadArg, want, got)
}
