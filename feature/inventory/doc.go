// Package inventory implements the piece inventory and its merge engine.
//
// It reconciles repeated, possibly-stale scan observations into a durable
// per-user inventory. Three rules are non-negotiable:
//  1. Stars are immutable once a piece exists.
//  2. Duplicates never decrease through a merge.
//  3. A scan showing fewer duplicates than stored is a conflict for the
//     caller to resolve, never an automatic write.
//
// # Components
//
//   - Store: keyed access to users and pieces; the max-upsert and the
//     unconditional SetDuplicates are the only mutation paths.
//   - Engine: classifies a batch into added/updated/conflict/unchanged, as a
//     dry run or with non-conflicting changes applied.
//   - Service/Handler: the direct, merge-bypassing operations (listings,
//     manual overrides, trade reports) that represent explicit user intent.
//
// # HTTP Endpoints
//
//   - GET  /inventory                 : list a user's pieces
//   - GET  /inventory/piece           : one piece by scene and slot
//   - PUT  /inventory/piece/duplicates: manual duplicate override
//   - GET  /inventory/missing         : slots the user lacks in a scene
//   - POST /trades                    : record a completed in-game trade
//   - GET  /scenes                    : known scene names
//   - GET  /scenes/owners             : users with tradeable spares
package inventory
