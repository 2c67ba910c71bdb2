// Copyright 2025 Michael J. Fromberger. All Rights Reserved.
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

package cell_test

import (
	"testing"

	"github.com/creachadair/cell"
)

func BenchmarkInsertTake(b *testing.B) {
	c := cell.New[int](nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ch := c.Take()
		if err := c.Insert(i); err != nil {
			b.Fatalf("Insert at i=%d: %v", i, err)
		}
		<-ch
	}
}

func BenchmarkPeek(b *testing.B) {
	c := cell.NewValue(1, nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := c.Peek(); !ok {
			b.Fatal("cell unexpectedly empty")
		}
	}
}
