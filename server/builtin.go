package server

import "mq-rpc/message"

const (
	helpDescription = "Retrieve details about remote methods. With no name, lists the " +
		"methods of this service; with a name, lists its versions; with a name and " +
		"a version, describes that method."
	inspectDescription = "Retrieve details about every method and version of this service."
)

func (s *Server) registerBuiltins() error {
	if err := s.Register(message.HelpMethod, message.BuiltinVersion,
		MustFunc(s.help, "name", "version"), WithMethodDescription(helpDescription)); err != nil {
		return err
	}
	return s.Register(message.InspectMethod, message.BuiltinVersion,
		MustFunc(s.inspect), WithMethodDescription(inspectDescription))
}

func (s *Server) help(name, version string) (any, error) {
	s.mu.RLock()
	proc, ok := s.procs[name]
	if name == "" || !ok {
		defer s.mu.RUnlock()
		return message.HelpOptions{
			HelpType:    message.HelpTypeOptions,
			Service:     s.name,
			Description: s.description,
			Methods:     s.methodNames(),
		}, nil
	}
	if version == "" {
		defer s.mu.RUnlock()
		return message.HelpVersions{
			HelpType: message.HelpTypeVersions,
			Method:   name,
			Versions: sortedVersions(proc),
		}, nil
	}
	s.mu.RUnlock()

	ep, err := s.lookup(name, version)
	if err != nil {
		return nil, err
	}
	return message.HelpMethodInfo{
		HelpType:    message.HelpTypeMethod,
		Method:      name,
		Version:     version,
		Description: ep.description,
	}, nil
}

func (s *Server) inspect() message.Catalogue {
	return s.Catalogue()
}
