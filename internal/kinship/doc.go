// Package kinship builds a viewer-scoped family graph from a person store and
// derives relationship labels and generation rows from it.
//
// Every Build call allocates its own graph, visibility cache, distance caches
// and level maps. Nothing is shared between calls, so two viewers can never
// observe each other's records through a warm cache.
package kinship
