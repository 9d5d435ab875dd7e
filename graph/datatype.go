/*
 *	Copyright 2026 The MemSwap Authors
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package graph

import (
	"encoding/json"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// DataType is the type of a tensor flowing over an edge: an element type
// plus a reference marker. Reference types alias persistent storage (the
// output of a Variable op, for example) rather than owning a buffer.
type DataType struct {
	Elem dtypes.DType `json:"-"`
	Ref  bool         `json:"-"`
}

// MakeDataType returns the value DataType for the element type.
func MakeDataType(elem dtypes.DType) DataType { return DataType{Elem: elem} }

// MakeRefType returns the reference DataType for the element type.
func MakeRefType(elem dtypes.DType) DataType { return DataType{Elem: elem, Ref: true} }

// IsRef reports whether the DataType is a reference type.
func (dt DataType) IsRef() bool { return dt.Ref }

// ValueType strips the reference marker, yielding the underlying value type.
func (dt DataType) ValueType() DataType { return DataType{Elem: dt.Elem} }

// Valid reports whether the element type is set.
func (dt DataType) Valid() bool { return dt.Elem != dtypes.InvalidDType }

const refSuffix = "_ref"

func (dt DataType) String() string {
	name := strings.ToLower(dt.Elem.String())
	if dt.Ref {
		return name + refSuffix
	}
	return name
}

// DataTypeString parses the representation produced by DataType.String.
func DataTypeString(s string) (DataType, error) {
	ref := strings.HasSuffix(s, refSuffix)
	elem, err := dtypes.DTypeString(strings.TrimSuffix(s, refSuffix))
	if err != nil {
		return DataType{}, errors.Wrapf(err, "invalid data type %q", s)
	}
	return DataType{Elem: elem, Ref: ref}, nil
}

// MarshalJSON encodes the DataType as its string form, e.g. "float32" or
// "float32_ref".
func (dt DataType) MarshalJSON() ([]byte, error) {
	return json.Marshal(dt.String())
}

func (dt *DataType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := DataTypeString(s)
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// IsZero reports whether the DataType is unset; it drives `omitzero` in JSON
// encodings of attributes.
func (dt DataType) IsZero() bool { return dt == DataType{} }
