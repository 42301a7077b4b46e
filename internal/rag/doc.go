// Package rag retrieves the documents that ground a chat turn.
//
// A Retriever embeds the visitor's question with the query embedder and asks
// the document store for the closest documents. Results below the optional
// score threshold are dropped.
package rag
