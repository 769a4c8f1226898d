// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package coerce maps source-native scalars into the JSON-compatible value
// set carried by core.Document.
//
// Three families of input are supported:
//
//   - Text (delimited files): FromText, driven by a core.SemanticType and a
//     DateParser built from a SimpleDateFormat-style pattern.
//   - SQL column values: FromSQL, driven by an SQLColumn derived from the
//     driver's type name with ParseSQLType.
//   - BSON values: FromBSON, which never fails.
//
// All functions are pure and safe for concurrent use. NULL values map to nil
// regardless of type.
package coerce
