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

// Package temporal recognizes relative time phrases in queries ("yesterday",
// "last week", "past 3 days") and turns them into concrete date ranges.
//
// Ranges are computed against the resolver's clock in the clock's location.
// Weeks start on Monday. Closed periods end one microsecond before the next
// period starts, which is the resolution of stored timestamps. Periods that
// contain the present end at the current instant.
//
// When a query holds more than one expression, the one that starts earliest
// in the text wins.
package temporal
