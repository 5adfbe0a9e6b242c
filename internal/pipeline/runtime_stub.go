//go:build !govips || !cgo

package pipeline

func Startup() error {
	return nil
}

func Shutdown() {}

func CodecName() string {
	return "stdlib"
}

func newCodec() Codec {
	return stdCodec{}
}
