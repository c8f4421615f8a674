// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package floats

var feature implementation

type implementation struct{}

func (implementation) mulConstTo(a []float32, b float32, c []float32) {
	mulConstTo(a, b, c)
}

func (implementation) mulConstAdd(a []float32, b float32, c []float32) {
	mulConstAdd(a, b, c)
}

func (implementation) dot(a, b []float32) float32 {
	return dot(a, b)
}
