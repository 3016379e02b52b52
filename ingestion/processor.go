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

package ingestion

import (
	"context"

	"github.com/poiesic/secondbrain/core"
)

// job is a document moving through the processors together with its chunks.
type job struct {
	doc    *core.Document
	chunks []*core.Chunk
}

// processor is an internal interface for one enrichment stage of a document.
// Implementations may modify the job's document and chunks in place.
type processor interface {
	// name identifies the stage in logs and traces.
	name() string

	// process enriches the job.
	process(ctx context.Context, j *job) error
}
