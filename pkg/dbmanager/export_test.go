package dbmanager

func (m *Manager) OpenHandles() int {
	return m.openHandles()
}
