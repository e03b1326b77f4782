// Package storage emite URLs pre-firmadas para subir adjuntos directo al object storage.
//
// Las claves de objeto siempre quedan bajo users/<subject>/, así un subject no puede
// pisar objetos de otro. La firma la hace el SDK de AWS (S3 o compatibles como MinIO).
package storage
