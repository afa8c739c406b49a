// Package memory provides namespaced, vector-searchable agent memory.
//
// Three memory patterns are built on the same primitives:
//   - Semantic: facts about the user, written by the agent through the
//     manage_memory tool and recalled with search_memory.
//   - Episodic: what happened and what worked. SimpleManager records ReAct
//     traces and exchanges as Episodes and retrieves them before a run.
//   - Procedural: how the agent should behave. Instructions stores the
//     system prompt under a fixed key so an optimizer can replace it.
//
// Architecture:
//   - Store: (namespace, key) item storage with similarity search
//   - Embedder: text-to-vector conversion
//   - Manager: orchestrates retrieval and recording around an agent run
//
// Implementations:
//   - store/chromem: chromem-go collections, one per namespace (in-process)
//   - embedder/openai: text-embedding-3-small via the OpenAI API
//   - embedder/mock: deterministic hash embeddings for tests
//   - embedder/cached: ristretto cache in front of any embedder
//   - embedder/onnx: all-MiniLM-L6-v2 offline (build tag onnx)
package memory
