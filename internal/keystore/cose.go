/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package keystore

import (
	"crypto/rsa"
	"fmt"
	"math/big"

	"github.com/kentakayama/bootsign/internal/provider"
)

// COSE_Key labels for RSA keys (RFC 8230).
const (
	coseKeyTypeRSA = 3
	labelKty       = 1
	labelKid       = 2
	labelRSAN      = -1
	labelRSAE      = -2
)

func rsaCOSEKey(pub *provider.PublicKey, kid []byte) (map[int]any, error) {
	k, ok := pub.Key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an RSA key", provider.ErrInvalidKey, pub.Key)
	}
	return map[int]any{
		labelKty:  coseKeyTypeRSA,
		labelKid:  kid,
		labelRSAN: k.N.Bytes(),
		labelRSAE: big.NewInt(int64(k.E)).Bytes(),
	}, nil
}
