package server

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// RegisterReceiver 扫描 rcvr 的所有导出方法，把能被 Func 适配的方法注册为 version 版本
//
// Methods are exposed under their Go name and take positional arguments only.
// Methods Func cannot adapt (variadic, too many results) are skipped. It returns
// the names that were registered.
func (s *Server) RegisterReceiver(rcvr any, version string) ([]string, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.NumMethod() == 0 {
		return nil, fmt.Errorf("rpc: %T has no exported methods", rcvr)
	}
	val := reflect.ValueOf(rcvr)

	var names []string
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		h, err := Func(val.Method(i).Interface())
		if err != nil {
			s.log.Debug("skipping method", zap.String("method", method.Name), zap.Error(err))
			continue
		}
		if err := s.Register(method.Name, version, h); err != nil {
			return names, err
		}
		names = append(names, method.Name)
	}
	return names, nil
}
