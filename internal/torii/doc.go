// Package torii streams entity updates from the indexer into the sync loop.
//
// The indexer pushes one JSON frame per changed entity over a websocket.
// Each frame carries the models (components) that changed, with every
// member typed as a primitive, enum, struct, array or byte array. Decode
// turns a frame into entitysync Updates; Client keeps the subscription open
// and reconnects until its context ends.
package torii
