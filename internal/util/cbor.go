/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package util

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// COSEKeyLabels names the COSE_Key map labels used by keystore exports.
// Key-type specific labels share a name, e.g. -1 is crv for EC2/OKP and n
// for RSA.
var COSEKeyLabels = map[int64]string{
	1:  "kty",
	2:  "kid",
	3:  "alg",
	4:  "key_ops",
	-1: "crv/n",
	-2: "x/e",
	-3: "y",
	-4: "d",
}

// DumpCBOR decodes data and renders it as indented JSON. Integer map keys
// found in labels are shown as "name(label)".
func DumpCBOR(data []byte, labels map[int64]string) (string, error) {
	var decoded any
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decode cbor: %w", err)
	}
	return renderPretty(decoded, labels)
}

// RenderCBORPretty renders an already decoded CBOR value.
func RenderCBORPretty(decoded any) (string, error) {
	return renderPretty(decoded, nil)
}

func renderPretty(decoded any, labels map[int64]string) (string, error) {
	normalised, err := normalise(decoded, labels)
	if err != nil {
		return "", err
	}
	pretty, err := json.MarshalIndent(normalised, "", "  ")
	if err != nil {
		return "", err
	}
	return string(pretty), nil
}

func normalise(value any, labels map[int64]string) (any, error) {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			norm, err := normalise(elem, labels)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			norm, err := normalise(val, labels)
			if err != nil {
				return nil, err
			}
			out[k] = norm
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			norm, err := normalise(val, labels)
			if err != nil {
				return nil, err
			}
			k := keyString(key, labels)
			if _, dup := out[k]; dup {
				return nil, fmt.Errorf("cbor map key %q rendered twice", k)
			}
			out[k] = norm
		}
		return out, nil
	case []byte:
		return fmt.Sprintf("h'%x'", v), nil
	case cbor.Tag:
		content, err := normalise(v.Content, labels)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"_cborTag": v.Number,
			"content":  content,
		}, nil
	default:
		return v, nil
	}
}

func keyString(key any, labels map[int64]string) string {
	var label int64
	switch k := key.(type) {
	case string:
		return k
	case []byte:
		return fmt.Sprintf("h'%x'", k)
	case int64:
		label = k
	case uint64:
		if k > 1<<62 {
			return fmt.Sprint(k)
		}
		label = int64(k)
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprint(k)
	}
	if name, ok := labels[label]; ok {
		return fmt.Sprintf("%s(%d)", name, label)
	}
	return fmt.Sprint(label)
}
